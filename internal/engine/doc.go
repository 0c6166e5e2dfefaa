// Package engine provides the asynchronous job lifecycle engine.
// It creates question jobs, drives them through queued→running→done/failed
// on randomized delayed tasks, records successful answers in a bounded
// history and pushes every transition to subscribed listeners.
package engine
