package request

import (
	"fmt"
	"strings"
)

// Method represents a request method
type Method int

const (
	// MethodConnect represents CONNECT
	MethodConnect Method = iota
	// MethodDelete represents DELETE
	MethodDelete
	// MethodGet represents GET
	MethodGet
	// MethodHead represents HEAD
	MethodHead
	// MethodOptions represents OPTIONS
	MethodOptions
	// MethodPost represents POST
	MethodPost
	// MethodPut represents PUT
	MethodPut
	// MethodTrace represents TRACE
	MethodTrace
)

var methodNames = [...]string{
	MethodConnect: "CONNECT",
	MethodDelete:  "DELETE",
	MethodGet:     "GET",
	MethodHead:    "HEAD",
	MethodOptions: "OPTIONS",
	MethodPost:    "POST",
	MethodPut:     "PUT",
	MethodTrace:   "TRACE",
}

// maxMethodLen is the length of the longest known method
const maxMethodLen = 7

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Implemented reports whether the server can serve the method
func (m Method) Implemented() bool {
	return m == MethodGet || m == MethodHead
}

// Type separates HTTP/0.9 request lines from versioned ones
type Type int

const (
	// TypeFull is a request line carrying a version token, optionally followed by headers
	TypeFull Type = iota
	// TypeSimple is an HTTP/0.9 request line
	TypeSimple
)

func (t Type) String() string {
	if t == TypeSimple {
		return "simple"
	}
	return "full"
}

// Version represents a protocol version
type Version struct {
	Major int
	Minor int
}

func (v Version) String() string {
	return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor)
}

// Version09 is the implied version of a simple request
var Version09 = Version{Major: 0, Minor: 9}

// Variable is a name/value pair, used for both query variables and headers
type Variable struct {
	Name  string
	Value string
}

// Request represents a parsed request
type Request struct {
	Method Method
	Type   Type
	// URI is the decoded path, "index.html" appended to directory paths
	URI string
	// Fragment is the decoded fragment, it plays no part in lookups
	Fragment string
	// QueryVariables are kept in the order they appeared, duplicates included
	QueryVariables []Variable
	// Headers are kept in the order they appeared
	Headers []Variable
	Version Version
}

// Query returns the value of the first query variable named name
func (r *Request) Query(name string) (string, bool) {
	return lookup(r.QueryVariables, name, false)
}

// Header returns the value of the first header named name, compared case insensitively
func (r *Request) Header(name string) (string, bool) {
	return lookup(r.Headers, name, true)
}

func lookup(vars []Variable, name string, fold bool) (string, bool) {
	for _, v := range vars {
		if v.Name == name || (fold && strings.EqualFold(v.Name, name)) {
			return v.Value, true
		}
	}
	return "", false
}

