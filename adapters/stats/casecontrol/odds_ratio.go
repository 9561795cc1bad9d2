package casecontrol

import (
	"fmt"

	"epistat/domain/association"
	"epistat/domain/core"
)

// OddsRatio computes (Control∩eat × Case∩not eat) / (Control∩not eat × Case∩eat)
// from the eat / not eat columns of the table. It returns ErrZeroDenominator when
// either denominator count is zero.
func OddsRatio(table association.ContingencyTable) (float64, error) {
	controlEat := float64(table.KindCount(association.OutcomeControl, association.ExposureEat))
	caseNotEat := float64(table.KindCount(association.OutcomeCase, association.ExposureNotEat))
	controlNotEat := table.KindCount(association.OutcomeControl, association.ExposureNotEat)
	caseEat := table.KindCount(association.OutcomeCase, association.ExposureEat)

	if controlNotEat == 0 || caseEat == 0 {
		return 0, fmt.Errorf("%w: Control/not eat=%d, Case/eat=%d", core.ErrZeroDenominator, controlNotEat, caseEat)
	}
	return (controlEat * caseNotEat) / (float64(controlNotEat) * float64(caseEat)), nil
}
