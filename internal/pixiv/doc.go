// Package pixiv adapts the Pixiv search and download APIs to the relay
// pipeline's normalized candidate model.
//
// Two API generations are supported. The public generation
// (public-api.secure.pixiv.net) returns full filter fields inline and labels
// its fallback variant px_480mw. The app generation (app-api.pixiv.net)
// labels the fallback medium and only exposes the restriction level through
// a per-work detail lookup, which the selector performs via the Detailer
// interface. The raw shapes are mapped into relay.Candidate here so the
// filter and dispatcher are written once against one model.
package pixiv
