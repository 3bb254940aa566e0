// Package cli provides the campus command-line interface.
//
// # Commands
//
// serve: Load plugin manifests, initialize plugins and serve the plugin API
//
//	campus serve --port 8080 --dirs ./plugins --mode strict --watch
//
// validate: Check every manifest and the dependency graph they form
//
//	campus validate --dirs ./plugins,/etc/campus/plugins
//
// plan: Print the initialization order without running any plugin code
//
//	campus plan --dirs ./plugins --routes
//
// serve reads the CAMPUS_* environment described in package config; flags
// override it.
package cli
