package main

import "time"

const (
	defaultListenAddr = ":5000"
	defaultSQLitePath = "luacrypt.db"
	defaultTokenTTL   = 24 * time.Hour

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	// maxBodyBytes caps JSON request bodies; scripts are posted whole.
	maxBodyBytes = 8 << 20
)

const (
	welcomeScriptName    = "Welcome Script"
	welcomeScriptContent = "print(\"Welcome to LuaCrypt!\")\nwarn(\"This script is protected.\")"
)

const (
	msgInvalidRequest    = "Invalid request"
	msgInvalidPassword   = "Invalid password"
	msgInvalidScriptData = "Invalid script data"
	msgInvalidID         = "Invalid ID"
	msgScriptNotFound    = "Script not found"
	msgNoCode            = "No code provided"
	msgNotFound          = "Not found"
	msgUnauthorized      = "Unauthorized"
	msgInternal          = "Internal server error"
)
