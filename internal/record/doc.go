// Package record defines the quality-control record for a motor/gear assembly.
//
// A Record is built once from operator form input (NewRecord), carries four
// fixed RPM buckets for optional audio attachments, and is never edited after
// it is appended to the store. Flatten turns a record into the ordered row
// consumed by the CSV and Excel exporters.
package record
