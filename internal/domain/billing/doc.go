// Package billing holds the plan catalog that gates invoicing features per seller.
//
// Every seller is on a PlanCode. A plan grants boolean features, such as
// cross-border B2B invoicing, and numeric limits, such as the monthly invoice
// allowance. DefaultPlanFeatures is the built-in catalog. Rows stored through
// PlanFeatureRepository override it entry by entry (see MergeFeatures).
package billing
