package models

// Item is the unit of data exchanged between nodes: a flat, string-keyed
// bag of values. Ports carry ordered slices of items.
type Item map[string]interface{}
