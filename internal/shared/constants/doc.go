// Package constants centralizes defaults shared between the CLI and the
// storage layers, such as file permissions and plugin settings.
package constants
