// Package builtins provides toolsets that ship with the server itself,
// independent of any catalog files or remote servers.
package builtins
