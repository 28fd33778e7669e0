// Package server provides the HTTP dashboard and control API for keepwarm.
//
// This package is internal to keepwarm and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML/CSS/JS dashboard at "/"
//   - REST API: status, history, configuration and control endpoints under "/api"
//   - Server-Sent Events: New ping results at "/api/sse"
//   - WebSocket: Status and ping results at "/api/ws"
//   - Chart: PNG latency chart of the retained history at "/api/chart.png"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// The server never owns the ping loop. It drives a [Service], normally a
// [keepwarm.Controller] created by the process entry point.
package server
