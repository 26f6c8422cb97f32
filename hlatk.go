package hlatk

// Version is the current version of hlatk.
const Version = "0.3.1"
