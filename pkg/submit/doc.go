// Package submit provides submission services: an HTTP JSON client that maps
// server error payloads into a single user-facing reason, and a writer sink.
package submit
