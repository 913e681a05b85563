// Package logstore persists step output as zstd-compressed files, one per
// step, with secret values masked before they reach disk.
//
// Layout:
//
//	<dir>/<run id>/<instance>/<NN>-<step>.log.zst
//
// Instance and step names are sanitized for the filesystem; matrix IDs such
// as build[os=linux] become build_os_linux_.
package logstore
