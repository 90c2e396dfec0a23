package horizon

import (
	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/starlight/donation/submit"
)

var _ submit.SubmitTxer = &Submitter{}

// Submitter submits transaction XDRs to the network via Horizon's API.
type Submitter struct {
	HorizonClient horizonclient.ClientInterface
}

// SubmitTx submits the given xdr as a transaction to Horizon. The error from
// Horizon is returned unwrapped so that its problem details remain available
// to horizonclient.GetError.
func (h *Submitter) SubmitTx(xdr string) error {
	_, err := h.HorizonClient.SubmitTransactionXDR(xdr)
	return err
}
