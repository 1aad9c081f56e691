/*
Package servicebus provides the in-process, name-addressed message bus that the
recommendation pipeline stages talk through. Handlers are registered under a stable
name and reached with Dispatch; integration events leave the process through an
injected EventPublisher.
*/
package servicebus
