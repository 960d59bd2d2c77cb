// Package hcl provides the concrete HCL implementation of config.Loader.
//
// A configuration file holds up to four optional blocks:
//
//	backend {
//	  base_url  = coalesce(env("COMFY_URL"), "http://127.0.0.1:8188")
//	  timeout   = "30s"
//	  transport = "websocket" # or "socketio"
//	}
//	store   { driver = "sqlite"  path = "~/.local/state/toucan/toucan.db" }
//	tracing { enabled = true  exporter = "otlp"  endpoint = "localhost:4317" }
//	catalog { ttl = "5m" }
//
// Expressions may call env, coalesce, lower, upper and trimspace.
package hcl
