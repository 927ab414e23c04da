// Package cli implements the filing command-line client.
//
// Usage:
//
//	filing-cli [-a url] [-t token] [-i interval] [-w wait] <command> [args]
//
// Commands:
//
//	create <lei> <period>                        create a filing
//	upload [-accept] [-sign] <lei> <period> <file>
//	                                             upload a file and wait for its validation
//	status <lei> <period> <counter>              show one submission
//	accept <lei> <period> <counter>              accept a validated submission
//	sign <lei> <period>                          sign the filing
//
// Without -t or FILING_TOKEN the token is prompted for without echo.
package cli
