package source

import (
	"fmt"
	"strings"
)

// LabelSearchByGeneric builds a label search expression for a generic name
func LabelSearchByGeneric(genericName string) string {
	return fmt.Sprintf("openfda.generic_name:%q", genericName)
}

// LabelSearchByRxCUI builds a label search expression for an RxCUI
func LabelSearchByRxCUI(rxcui string) string {
	return fmt.Sprintf("openfda.rxcui:%q", rxcui)
}

// EventSearch builds the adverse-event search clause for a drug: generic
// name, OR'd with the RxCUI when one is known
func EventSearch(genericName, rxcui string) string {
	clauses := []string{
		fmt.Sprintf("patient.drug.openfda.generic_name:%q", strings.ToLower(strings.TrimSpace(genericName))),
	}
	if rxcui != "" {
		clauses = append(clauses, fmt.Sprintf("patient.drug.openfda.rxcui:%q", rxcui))
	}
	return strings.Join(clauses, "+OR+")
}
