// Package link provides bring-up of the host-facing link transport.
package link

// The link endpoint must never be visible to the host while it's being
// created. A GPIO line (the connect signal) masks the device from
// enumeration: the PHY asserts it before creating the endpoint and
// releases it once creation succeeded or definitively failed.
//
// Besides the data endpoint, the PHY owns an optional notification
// side-channel used to tell the host about local I/O activity. Events are
// fixed-size little-endian records (see NotifyEvent).
//
// Producer: device (board)
// Consumer: host tooling
