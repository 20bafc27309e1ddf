package main

import "time"

// GlobalFlags holds persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
}

// ClientFlags configure commands that talk to a running supervisor.
type ClientFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// ProbeFlags override the health endpoint from config.
type ProbeFlags struct {
	Host    string
	Port    int
	Path    string
	Wait    bool
	Timeout time.Duration
}
