package config

// Schema is the JSON schema for validating configuration files
const Schema = `{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "type": "object",
    "properties": {
        "folder": {
            "type": "string",
            "description": "Base folder holding inbox, processed and logs"
        },
        "timezone": {
            "type": "string",
            "description": "IANA timezone the filename timestamps are expressed in"
        },
        "batch_size": {
            "type": "integer",
            "minimum": 1
        },
        "polling_interval_seconds": {
            "type": "integer",
            "minimum": 1
        },
        "max_concurrent_uploads": {
            "type": "integer",
            "minimum": 1
        },
        "lock_stale_minutes": {
            "type": "integer",
            "minimum": 1
        },
        "log_level": {
            "type": "string",
            "enum": ["debug", "info", "warn", "error"]
        },
        "log_format": {
            "type": "string",
            "enum": ["json", "console"]
        },
        "server": {
            "type": "object",
            "properties": {
                "url": {
                    "type": "string",
                    "pattern": "^https?://"
                },
                "api_key": {
                    "type": "string"
                },
                "requests_per_second": {
                    "type": "number",
                    "minimum": 0
                }
            }
        },
        "ledger": {
            "type": "object",
            "properties": {
                "dsn": {
                    "type": "string"
                }
            }
        },
        "retention": {
            "type": "object",
            "properties": {
                "processed_keep": {
                    "type": "integer",
                    "minimum": 0
                },
                "tiers": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "tier": {
                                "type": "string",
                                "enum": ["hourly", "daily", "weekly", "monthly", "quarterly", "yearly"]
                            },
                            "retention": {
                                "type": "integer",
                                "minimum": 0
                            }
                        },
                        "required": ["tier", "retention"]
                    }
                }
            }
        },
        "storage": {
            "type": "object",
            "properties": {
                "destinations": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "name": {
                                "type": "string",
                                "pattern": "^[a-zA-Z0-9_-]+$"
                            },
                            "type": {
                                "type": "string",
                                "enum": ["local", "s3", "backblaze", "ssh", "mms"]
                            },
                            "enabled": {
                                "type": "boolean"
                            },
                            "base_dir": {
                                "type": "string"
                            },
                            "options": {
                                "type": "object"
                            }
                        },
                        "required": ["name", "type", "enabled"]
                    }
                }
            }
        }
    }
}`
