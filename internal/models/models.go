package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item together with its stock level
type Product struct {
	ID            string          `db:"id" json:"id"`
	ShopID        string          `db:"shop_id" json:"shop_id"`
	SKU           string          `db:"sku" json:"sku"`
	Name          string          `db:"name" json:"name"`
	Quantity      int             `db:"quantity" json:"quantity"`
	ReorderPoint  int             `db:"reorder_point" json:"reorder_point"`
	PurchasePrice decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	SellingPrice  decimal.Decimal `db:"selling_price" json:"selling_price"`
	Status        string          `db:"status" json:"status"`
	StockVersion  int64           `db:"stock_version" json:"stock_version"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Sale represents one checkout
type Sale struct {
	ID             string          `db:"id" json:"id"`
	ShopID         string          `db:"shop_id" json:"shop_id"`
	Status         string          `db:"status" json:"status"`
	CustomerID     *string         `db:"customer_id" json:"customer_id"`
	DeliveryStatus string          `db:"delivery_status" json:"delivery_status"`
	NetAmount      decimal.Decimal `db:"net_amount" json:"net_amount"`
	AmountPaid     decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	ChangeGiven    decimal.Decimal `db:"change_given" json:"change_given"`
	DeliveryFee    decimal.Decimal `db:"delivery_fee" json:"delivery_fee"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	Profit         decimal.Decimal `db:"profit" json:"profit"`
	PaymentMethod  string          `db:"payment_method" json:"payment_method"`
	CreatedBy      string          `db:"created_by" json:"created_by"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderLine represents one product entry of a sale
type OrderLine struct {
	ID            string          `db:"id" json:"id"`
	SaleID        string          `db:"sale_id" json:"sale_id"`
	ProductID     string          `db:"product_id" json:"product_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price" json:"unit_price"`
	UnitCost      decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// OhadaCode is an entry of the OHADA chart of accounts
type OhadaCode struct {
	ID    string `db:"id" json:"id"`
	Code  string `db:"code" json:"code"`
	Label string `db:"label" json:"label"`
	Kind  string `db:"kind" json:"kind"`
}

// IncomeEntry is an append-only ledger record
type IncomeEntry struct {
	ID            string          `db:"id" json:"id"`
	ShopID        string          `db:"shop_id" json:"shop_id"`
	Date          time.Time       `db:"entry_date" json:"date"`
	Description   string          `db:"description" json:"description"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	OhadaCodeID   string          `db:"ohada_code_id" json:"ohada_code_id"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Actor identifies who performs an operation
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Sale statuses
const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

// Delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusShipped   = "shipped"
	DeliveryStatusDelivered = "delivered"
)

// Payment statuses of order lines
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
)

// Payment methods
const (
	PaymentMethodCash         = "cash"
	PaymentMethodCard         = "card"
	PaymentMethodMobileMoney  = "mobile_money"
	PaymentMethodBankTransfer = "bank_transfer"
)

// Ledger kinds
const (
	LedgerKindIncome  = "income"
	LedgerKindExpense = "expense"
)

// OhadaCodeSalesRevenue books goods-sales revenue.
const OhadaCodeSalesRevenue = "701"

func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileMoney, PaymentMethodBankTransfer:
		return true
	}
	return false
}

func IsValidDeliveryStatus(status string) bool {
	switch status {
	case DeliveryStatusPending, DeliveryStatusShipped, DeliveryStatusDelivered:
		return true
	}
	return false
}

func IsValidPaymentStatus(status string) bool {
	return status == PaymentStatusPending || status == PaymentStatusPaid
}
