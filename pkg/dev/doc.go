// Package dev defines the low-level I/O capability set shared by peripherals,
// buffered pseudo-devices and the link transport.
package dev
