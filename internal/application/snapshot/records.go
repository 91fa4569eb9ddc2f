package snapshot

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/catalog"
	"github.com/pos/backend/internal/domain/identity"
	"github.com/pos/backend/internal/domain/ledger"
	"github.com/pos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Snapshot file names inside a snapshot directory
const (
	AccountsFile = "accounts.json"
	ProductsFile = "products.json"
	InvoicesFile = "invoices.json"
)

// legacyTimestamp is the local, zone-less timestamp of older ledgers
const legacyTimestamp = "2006-01-02T15:04:05.999999999"

// cent is how far stored totals may drift from a recomputation
var cent = decimal.New(1, -2)

// AccountRecord is the stored form of an account. Older files carry the
// plain password instead of its hash.
type AccountRecord struct {
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Password     string     `json:"password,omitempty"`
	PasswordHash string     `json:"password_hash,omitempty"`
	Role         string     `json:"role"`
	Company      string     `json:"company"`
	ShopType     string     `json:"shop_type"`
	VAT          string     `json:"vat,omitempty"`
	PhotoPath    string     `json:"photo_path,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// Validate implements store.Record
func (r AccountRecord) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return shared.NewDomainError("INVALID_USERNAME", "Username cannot be empty")
	}
	if !identity.Role(r.Role).IsValid() {
		return shared.NewDomainError("INVALID_ROLE", "Unknown account role: "+r.Role)
	}
	if _, err := shared.NewTenant(r.Company, shared.ShopType(r.ShopType)); err != nil {
		return err
	}
	if r.Password == "" && r.PasswordHash == "" {
		return shared.NewDomainError("INVALID_PASSWORD", "Account "+r.Username+" has no credentials")
	}
	return nil
}

// IsLegacy reports whether the record stores a plain password
func (r AccountRecord) IsLegacy() bool {
	return r.PasswordHash == ""
}

func (r AccountRecord) toDomain(hasher identity.PasswordHasher) (*identity.Account, error) {
	hash := r.PasswordHash
	if r.IsLegacy() {
		var err error
		if hash, err = hasher.Hash(r.Password); err != nil {
			return nil, shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password of "+r.Username)
		}
	}
	account := &identity.Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Username:          strings.TrimSpace(r.Username),
		Email:             strings.TrimSpace(r.Email),
		PasswordHash:      hash,
		Role:              identity.Role(r.Role),
		Tenant:            shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)},
		PhotoRef:          r.PhotoPath,
	}
	if account.Role == identity.RoleAdmin {
		account.VAT = strings.TrimSpace(r.VAT)
	}
	if r.CreatedAt != nil {
		account.CreatedAt = *r.CreatedAt
		account.UpdatedAt = *r.CreatedAt
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

func accountRecordFrom(a *identity.Account) AccountRecord {
	created := a.CreatedAt
	return AccountRecord{
		Username:     a.Username,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		Role:         string(a.Role),
		Company:      a.Tenant.Company,
		ShopType:     string(a.Tenant.ShopType),
		VAT:          a.VAT,
		PhotoPath:    a.PhotoRef,
		CreatedAt:    &created,
	}
}

// ProductRecord is the stored form of a product
type ProductRecord struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	PriceNoVAT decimal.Decimal `json:"price_no_vat"`
	Type       string          `json:"ptype"`
	ImagePath  string          `json:"image_path,omitempty"`
	Stock      int             `json:"stock"`
	MinStock   int             `json:"min_stock"`
	Company    string          `json:"company"`
	ShopType   string          `json:"shop_type"`
}

// Validate implements store.Record
func (r ProductRecord) Validate() error {
	_, err := r.toDomain()
	return err
}

// Tenant returns the tenant owning the product
func (r ProductRecord) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

func (r ProductRecord) toDomain() (*catalog.Product, error) {
	p, err := catalog.NewProduct(r.Tenant(), r.Code, r.Name, r.PriceNoVAT, r.Type)
	if err != nil {
		return nil, err
	}
	if err := p.SetInitialStock(r.Stock, r.MinStock); err != nil {
		return nil, err
	}
	p.ImageRef = strings.TrimSpace(r.ImagePath)
	return p, nil
}

func productRecordFrom(p *catalog.Product) ProductRecord {
	return ProductRecord{
		Code:       p.Code,
		Name:       p.Name,
		PriceNoVAT: p.Price,
		Type:       p.Type,
		ImagePath:  p.ImageRef,
		Stock:      p.Stock,
		MinStock:   p.MinStock,
		Company:    p.Tenant.Company,
		ShopType:   string(p.Tenant.ShopType),
	}
}

// InvoiceLineRecord is the stored form of an invoice line
type InvoiceLineRecord struct {
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Qty        int             `json:"qty"`
	PriceNoVAT decimal.Decimal `json:"price_no_vat"`
}

// InvoiceRecord is the stored form of an invoice. Older files have no
// tenant columns; such invoices belong to their seller's tenant.
type InvoiceRecord struct {
	Number       string              `json:"id"`
	Timestamp    string              `json:"timestamp"`
	Seller       string              `json:"seller"`
	Company      string              `json:"company,omitempty"`
	ShopType     string              `json:"shop_type,omitempty"`
	Items        []InvoiceLineRecord `json:"items"`
	TotalNoVAT   decimal.Decimal     `json:"total_no_vat"`
	VATRate      decimal.Decimal     `json:"vat_rate"`
	TotalWithVAT decimal.Decimal     `json:"total_with_vat"`
	Receipt      string              `json:"receipt,omitempty"`
	HTMLPath     string              `json:"html_path,omitempty"` // written by older installs
}

// ReceiptRef returns the receipt reference, falling back to the legacy
// html_path field
func (r InvoiceRecord) ReceiptRef() string {
	if ref := strings.TrimSpace(r.Receipt); ref != "" {
		return ref
	}
	return strings.TrimSpace(r.HTMLPath)
}

// Validate implements store.Record. Stored totals must agree with the
// lines to the cent.
func (r InvoiceRecord) Validate() error {
	if strings.TrimSpace(r.Number) == "" {
		return shared.NewDomainError("INVALID_NUMBER", "Invoice number cannot be empty")
	}
	if strings.TrimSpace(r.Seller) == "" {
		return shared.NewDomainError("INVALID_SELLER", "Invoice "+r.Number+" has no seller")
	}
	if _, err := r.IssuedAt(); err != nil {
		return err
	}
	items, err := r.lines(func(string) uuid.UUID { return uuid.Nil })
	if err != nil {
		return err
	}
	if r.VATRate.IsNegative() || r.VATRate.GreaterThan(decimal.NewFromInt(1)) {
		return shared.NewDomainError("INVALID_TAX_RATE", "Invoice "+r.Number+" has an invalid VAT rate")
	}
	totals := ledger.ComputeTotals(items, r.VATRate)
	if totals.ExclTax.Sub(r.TotalNoVAT).Abs().GreaterThan(cent) ||
		totals.InclTax.Sub(r.TotalWithVAT).Abs().GreaterThan(cent) {
		return shared.NewDomainError("INCONSISTENT_TOTALS",
			fmt.Sprintf("Invoice %s totals %s/%s do not match items (%s/%s)",
				r.Number, r.TotalNoVAT, r.TotalWithVAT, totals.ExclTax, totals.InclTax))
	}
	return nil
}

// HasTenant reports whether the record names its tenant
func (r InvoiceRecord) HasTenant() bool {
	return r.Company != "" && r.ShopType != ""
}

// Tenant returns the tenant named by the record
func (r InvoiceRecord) Tenant() shared.Tenant {
	return shared.Tenant{Company: r.Company, ShopType: shared.ShopType(r.ShopType)}
}

// IssuedAt parses the timestamp, accepting RFC 3339 and the zone-less
// local form
func (r InvoiceRecord) IssuedAt() (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, r.Timestamp); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(legacyTimestamp, r.Timestamp, time.Local)
	if err != nil {
		return time.Time{}, shared.NewDomainError("INVALID_TIMESTAMP",
			fmt.Sprintf("Invoice %s has an unreadable timestamp %q", r.Number, r.Timestamp))
	}
	return t, nil
}

func (r InvoiceRecord) lines(productID func(code string) uuid.UUID) ([]ledger.InvoiceItem, error) {
	if len(r.Items) == 0 {
		return nil, shared.NewDomainError("EMPTY_INVOICE", "Invoice "+r.Number+" has no items")
	}
	items := make([]ledger.InvoiceItem, len(r.Items))
	for i, line := range r.Items {
		item, err := ledger.NewInvoiceItem(productID(line.Code), line.Code, line.Name, line.Qty, line.PriceNoVAT)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}

func (r InvoiceRecord) toDomain(tenant shared.Tenant, sequence int64, productID func(code string) uuid.UUID) (*ledger.Invoice, error) {
	issuedAt, err := r.IssuedAt()
	if err != nil {
		return nil, err
	}
	items, err := r.lines(productID)
	if err != nil {
		return nil, err
	}
	invoice, err := ledger.NewInvoice(tenant, r.Seller, items, r.VATRate, r.Number, sequence, issuedAt)
	if err != nil {
		return nil, err
	}
	if ref := r.ReceiptRef(); ref != "" {
		if err := invoice.AttachReceipt(ref); err != nil {
			return nil, err
		}
	}
	return invoice, nil
}

func invoiceRecordFrom(inv *ledger.Invoice) InvoiceRecord {
	lines := make([]InvoiceLineRecord, len(inv.Items))
	for i, item := range inv.Items {
		lines[i] = InvoiceLineRecord{
			Code:       item.Code,
			Name:       item.Name,
			Qty:        item.Quantity,
			PriceNoVAT: item.UnitPrice,
		}
	}
	return InvoiceRecord{
		Number:       inv.Number,
		Timestamp:    inv.IssuedAt.Format(time.RFC3339Nano),
		Seller:       inv.Seller,
		Company:      inv.Tenant.Company,
		ShopType:     string(inv.Tenant.ShopType),
		Items:        lines,
		TotalNoVAT:   inv.TotalExclTax,
		VATRate:      inv.TaxRate,
		TotalWithVAT: inv.TotalInclTax,
		Receipt:      inv.ReceiptRef,
	}
}
