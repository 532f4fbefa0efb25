package registry

import "cloudboost-metrics/internal/domain"

func threshold(v float64) *float64 { return &v }

// builtins are registered in order; growth metrics follow their base.
var builtins = []domain.MetricDefinition{
	{
		ID:          "revenue",
		Description: "Total revenue",
		InputKinds:  []domain.Kind{domain.KindRevenue},
		Unit:        domain.UnitCurrency,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldAmount,
	},
	{
		ID:          "revenueGrowth",
		Description: "Revenue change against the previous window",
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRollingGrowth,
		Base:        "revenue",
		Target:      threshold(10),
		Critical:    threshold(-10),
	},
	{
		ID:          "leads",
		Description: "Leads captured",
		InputKinds:  []domain.Kind{domain.KindLead},
		Unit:        domain.UnitCount,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldCount,
	},
	{
		ID:          "leadGrowth",
		Description: "Lead volume change against the previous window",
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRollingGrowth,
		Base:        "leads",
	},
	{
		ID:          "conversionRate",
		Description: "Share of leads converted",
		InputKinds:  []domain.Kind{domain.KindLead},
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldConverted,
		Denominator: domain.FieldCount,
		Target:      threshold(25),
		Warning:     threshold(15),
		Critical:    threshold(10),
	},
	{
		ID:          "messagesSent",
		Description: "Messages sent across channels",
		InputKinds:  []domain.Kind{domain.KindMessage},
		Unit:        domain.UnitCount,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldSent,
	},
	{
		ID:          "deliveryRate",
		Description: "Share of sent messages delivered",
		InputKinds:  []domain.Kind{domain.KindMessage},
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldDelivered,
		Denominator: domain.FieldSent,
		Target:      threshold(95),
		Warning:     threshold(90),
		Critical:    threshold(80),
	},
	{
		ID:          "messagingCost",
		Description: "Total messaging cost",
		InputKinds:  []domain.Kind{domain.KindMessage},
		Unit:        domain.UnitCurrency,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldCost,
	},
	{
		ID:          "costPerMessage",
		Description: "Messaging cost per message sent",
		InputKinds:  []domain.Kind{domain.KindMessage},
		Unit:        domain.UnitCurrency,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldCost,
		Denominator: domain.FieldSent,
	},
	{
		ID:          "campaignSpend",
		Description: "Total campaign spend",
		InputKinds:  []domain.Kind{domain.KindCampaignSpend},
		Unit:        domain.UnitCurrency,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldCost,
	},
	{
		ID:          "budgetUtilization",
		Description: "Campaign spend as a share of budget",
		InputKinds:  []domain.Kind{domain.KindCampaignSpend},
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldCost,
		Denominator: domain.FieldBudget,
		Target:      threshold(80),
	},
	{
		ID:          "engagementRate",
		Description: "Social engagement per reach",
		InputKinds:  []domain.Kind{domain.KindCampaignSpend},
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldEngagement,
		Denominator: domain.FieldReach,
		Target:      threshold(5),
		Warning:     threshold(2),
		Critical:    threshold(1),
	},
	{
		ID:          "invoicedAmount",
		Description: "Total invoiced",
		InputKinds:  []domain.Kind{domain.KindInvoice},
		Unit:        domain.UnitCurrency,
		Granularity: domain.GranularitySum,
		Field:       domain.FieldAmount,
	},
	{
		ID:          "collectionRate",
		Description: "Share of invoiced amount paid",
		InputKinds:  []domain.Kind{domain.KindInvoice},
		Unit:        domain.UnitPercent,
		Granularity: domain.GranularityRatio,
		Numerator:   domain.FieldPaid,
		Denominator: domain.FieldAmount,
		Target:      threshold(90),
		Warning:     threshold(75),
		Critical:    threshold(60),
	},
}

// Default returns an unsealed registry holding the built-in definitions.
func Default() *Registry {
	r := New()
	for _, def := range builtins {
		if err := r.Register(def); err != nil {
			panic("registry: built-in " + def.ID + ": " + err.Error())
		}
	}
	return r
}
