// Package mcp provides Model Context Protocol server implementation.
//
// Implements JSON-RPC 2.0 protocol over stdio for AI agent integration,
// providing the 16 icm_memory_* and icm_memoir_* tools for memory storage,
// recall, lifecycle, and concept-graph operations.
package mcp
