// Package printing turns an invoice into a document: an HTML page from
// an embedded html/template, and a PDF printed from that page by a headless
// Chrome driven over the DevTools protocol.
//
// Chrome failures and timeouts surface as provider errors; template
// failures are plain errors.
package printing
