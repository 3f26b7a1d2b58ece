// Package flashscript renders the flash.sh wrapper shipped inside release
// archives. The script wraps the flashing tool with the prepared manifest's
// arguments and asks for explicit confirmation before flashing builds with
// Secure Boot or flash encryption, both of which can brick a device when
// mishandled.
package flashscript
