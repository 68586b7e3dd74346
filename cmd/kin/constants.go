package main

// Default limits for CLI commands.
const (
	DefaultListLimit = 50
)

// Output formats shared by the listing commands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// validFormats lists the accepted values for --format.
var validFormats = []string{formatTable, formatJSON}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
