// Package tasks contains the task types the server registers with the work
// queue and that clients can enqueue through the API.
package tasks
