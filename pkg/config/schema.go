package config

// configSchema is the fixed JSON Schema every loaded Config is validated
// against before reaching the engine (spec §7's Configuration error
// class, SPEC_FULL.md §10/§11).
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "read": {
      "type": "object",
      "properties": {
        "prefetch_buffer_size": {"type": "integer", "minimum": 0},
        "num_threads": {"type": "integer", "minimum": 0}
      }
    },
    "multiprocessing": {
      "type": "object",
      "properties": {
        "num_workers": {"type": "integer", "minimum": 1},
        "per_worker_buffer_size": {"type": "integer", "minimum": 0},
        "worker_start_method": {"type": "string", "minLength": 1},
        "record_interval": {}
      },
      "required": ["num_workers"]
    },
    "shard": {
      "type": "object",
      "properties": {
        "shard_index": {"type": "integer", "minimum": 0},
        "shard_count": {"type": "integer", "minimum": 1},
        "drop_remainder": {"type": "boolean"}
      },
      "required": ["shard_count"]
    }
  }
}`
