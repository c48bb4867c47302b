// Package msgs provides the event messages published about a board.
package msgs

// Events are carried in a Typed envelope encoded with protobuf.
//
// Producer: linkd (board side)
// Consumer: linkmon and other host tools
