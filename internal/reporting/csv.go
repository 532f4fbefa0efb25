package reporting

import (
	"fmt"
	"strings"

	"cloudboost-metrics/internal/domain"
)

// RenderCSV renders report rows as a CSV string. Undefined values are empty
// cells.
func RenderCSV(r *Report) string {
	var sb strings.Builder

	sb.WriteString("metric_id,unit,current,previous,change_pct,trend,status,record_count\n")

	for _, row := range r.Rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%d\n",
			row.MetricID,
			row.Unit,
			csvValue(row.Current, row.Unit.Precision()),
			csvValue(row.Previous, row.Unit.Precision()),
			csvValue(row.ChangePct, 2),
			row.Trend,
			row.Status,
			row.RecordCount,
		))
	}

	return sb.String()
}

func csvValue(v domain.Value, places int32) string {
	if !v.Defined {
		return ""
	}
	return fmt.Sprintf("%.*f", places, v.Number)
}
