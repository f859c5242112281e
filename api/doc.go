// Package api serves service search, embedding and listing over HTTP.
//
// Routes are registered on a net/http ServeMux using method and wildcard
// patterns. Every response is JSON; failures carry {"success": false,
// "error": ...} with a status chosen by errorStatus.
package api
