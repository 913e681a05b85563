package app

import (
	"github.com/specialistvlad/pipegrid/internal/registry"
	"github.com/specialistvlad/pipegrid/modules/env"
	"github.com/specialistvlad/pipegrid/modules/httpcall"
	"github.com/specialistvlad/pipegrid/modules/output"
	"github.com/specialistvlad/pipegrid/modules/print"
	"github.com/specialistvlad/pipegrid/modules/socketio"
	"github.com/specialistvlad/pipegrid/modules/upload"
)

// coreModules is the definitive list of all step actions compiled into the
// pipegrid binary.
func coreModules() []registry.Module {
	return []registry.Module{
		&env.Module{},
		&print.Module{},
		&output.Module{},
		&httpcall.Module{},
		&upload.Module{},
		&socketio.Module{},
	}
}
