// Package websocket provides real-time deployment progress via WebSocket.
//
// Clients connect to /api/v1/deployments/:id/ws, receive the current
// deployment state and then every step transition until the deployment
// succeeds or fails.
package websocket
