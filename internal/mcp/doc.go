// Package mcp implements the Model Context Protocol (MCP) server for codescope.
//
// The server exposes six tools to AI coding agents:
//   - search_codebase: semantic search over an indexed project
//   - index_codebase: incremental (or full) indexing
//   - reindex_file: re-index one file after an edit
//   - get_status: index statistics, or {"indexed": false}
//   - begin_session / end_session: snapshot files, then re-index what changed
//
// Every tool takes an optional project_path. It defaults to "." and relative
// paths are taken from the server root (the working directory of
// "codescope serve"). Projects are opened on first use and kept open until
// the server stops.
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout is reserved for the protocol.
//
// # Tool: search_codebase
//
//	Request:
//	{
//	  "name": "search_codebase",
//	  "arguments": {"query": "password hashing", "n_results": 5}
//	}
//
//	Response:
//	[
//	  {
//	    "file": "internal/auth/hash.go",
//	    "lines": "12-40",
//	    "similarity": 0.8731,
//	    "symbol": "HashPassword",
//	    "language": "go",
//	    "content": "func HashPassword(..."
//	  }
//	]
//
// An empty result set is reported as the text "No results found.".
//
// # Tool: end_session
//
//	Response:
//	{
//	  "status": "session_ended",
//	  "files_modified": 2,
//	  "files_created": 1,
//	  "files_deleted": 0,
//	  "chunks_reindexed": 9
//	}
//
// # Resources
//
//   - codescope://status: same document as get_status for the server root
//   - codescope://files: candidate files plus the tracked count
//   - codescope://tree: ASCII tree of the candidate files
//   - codescope://config: active provider and model, global keys masked
//
// # Prompts
//
//   - search_first(query): search before opening files
//   - session_workflow: the begin_session / end_session routine
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "codescope": {
//	      "command": "/usr/local/bin/codescope",
//	      "args": ["serve"],
//	      "env": {
//	        "OPENAI_API_KEY": "your-api-key"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Handlers return *MCPError values. Codes:
//   - -32602: Invalid params (missing/invalid arguments, missing API key)
//   - -32603: Internal error (database, filesystem, embedding provider)
//   - -32001: project_path is not a readable directory
//   - -32002: Indexing in progress
//   - -32003: Project not indexed
//   - -32004: Empty query
//   - -32005: No active session
package mcp
