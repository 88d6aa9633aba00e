package models

// All returns every persistence model. The schema of record lives in the
// SQL migrations; this list feeds AutoMigrate in tests only.
func All() []any {
	return []any{
		&SellerModel{},
		&BuyerModel{},
		&BankAccountModel{},
		&VatIdentityModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&InvoiceSequenceModel{},
		&InvoiceEventModel{},
		&PlanFeatureModel{},
	}
}
