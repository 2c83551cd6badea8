package merecat

import "github.com/valyala/fasthttp"

// Method is an HTTP request method, recognized per spec.md §4.5.
type Method string

const (
	MethodGet     Method = fasthttp.MethodGet
	MethodHead    Method = fasthttp.MethodHead
	MethodPost    Method = fasthttp.MethodPost
	MethodPut     Method = fasthttp.MethodPut
	MethodDelete  Method = fasthttp.MethodDelete
	MethodConnect Method = fasthttp.MethodConnect
	MethodOptions Method = fasthttp.MethodOptions
	MethodTrace   Method = fasthttp.MethodTrace
)

// knownMethods is the set accepted by the request parser (C5); any other
// token on the request line yields 501.
var knownMethods = map[Method]bool{
	MethodGet:     true,
	MethodHead:    true,
	MethodPost:    true,
	MethodPut:     true,
	MethodDelete:  true,
	MethodConnect: true,
	MethodOptions: true,
	MethodTrace:   true,
}

// bodylessMethods never carry a request body, regardless of Content-Length.
var bodylessMethods = map[Method]bool{
	MethodGet:     true,
	MethodHead:    true,
	MethodOptions: true,
	MethodTrace:   true,
	MethodConnect: true,
}
