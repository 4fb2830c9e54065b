// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing task logs, scripting a Decision Oracle
// and standing in for remote agents. They are not intended for production
// usage.
package testutil
