// Package printing renders receipt documents for committed invoices and
// keeps them in the receipt store.
//
// This package contains:
// - HTMLRenderer, which binds an invoice to the embedded receipt template
// - ChromedpRenderer, which prints that HTML to PDF through headless Chrome
// - FileReceiptStore, an afero-backed store sharded by year and month
//
// Example usage:
//
//	renderer := NewHTMLRenderer()
//	doc, err := renderer.Render(ctx, invoice)
//	if err != nil {
//	    return err
//	}
//
//	store := NewFileReceiptStore(afero.NewOsFs(), "invoices", logger)
//	ref, err := store.Write(ctx, invoice.Number, invoice.IssuedAt, doc)
package printing
