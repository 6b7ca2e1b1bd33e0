// Package version provides version information for subdive
package version

const (
	// Version is the current version of subdive
	Version = "1.0.0"

	// AppName is the application name
	AppName = "subdive"

	// Repository is the GitHub repository URL
	Repository = "https://github.com/jhaxce/subdive"

	// Author is the application author
	Author = "jhaxce"
)
