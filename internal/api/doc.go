// Package api implements the HTTP surface of the agent: the JSON-RPC 2.0
// task methods, the REST task endpoints, and the server-sent-event streams
// that deliver task progress. Handlers translate between wire types and the
// service layer and never touch the task machinery directly.
package api
