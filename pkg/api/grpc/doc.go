// Package grpc serves the standard gRPC health service, so orchestrators
// can probe the deployment workers without going through HTTP.
package grpc
