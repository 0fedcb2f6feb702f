// Package local keeps a crawl run on the local filesystem: raw pages under
// the run directory and the frontier snapshot as a CSV file next to them.
package local
