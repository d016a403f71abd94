// Package config loads the declarative engine definition.
//
// A definition is a YAML document listing states (with their mutually
// exclusive peers) and scenes (with priority, triggers, interval and a tree
// of handlers). Loading is strict: an unknown field, an unknown op, an op
// parameter the op does not accept, or a condition expression that does not
// parse is a load-time error. Nothing is scheduled from a definition that
// failed to load.
//
// Example:
//
//	states:
//	  - name: walk
//	    mutex: [run]
//	    mutex_symmetric: true
//	  - name: run
//	  - name: hit
//	scenes:
//	  - name: combat
//	    priority: 5
//	    triggers: [hit]
//	    interval: 0.5
//	    handlers:
//	      - states: '["hit", 0, 0.3]'
//	        debug_name: dodge
//	        operations:
//	          - op: press
//	            key: space
package config
