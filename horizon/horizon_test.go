package horizon

import (
	"context"
	"errors"
	"testing"

	"github.com/stellar/go/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/protocols/horizon"
	"github.com/stellar/go/protocols/horizon/base"
	"github.com/stellar/go/txnbuild"
	"github.com/stellar/starlight/donation/host"
	"github.com/stellar/starlight/donation/state"
	"github.com/stellar/starlight/donation/store"
	"github.com/stellar/starlight/donation/submit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLedger(client horizonclient.ClientInterface) *Ledger {
	return &Ledger{
		HorizonClient: client,
		Submitter: &submit.Submitter{
			SubmitTxer:        &Submitter{HorizonClient: client},
			NetworkPassphrase: network.TestNetworkPassphrase,
		},
	}
}

func nativeAccount(balance string) horizon.Account {
	return horizon.Account{
		Sequence: "100",
		Balances: []horizon.Balance{
			{Balance: balance, Asset: base.Asset{Type: "native"}},
		},
	}
}

func TestLedger_Balance(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	account := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", horizonclient.AccountRequest{AccountID: account.Address()}).Return(horizon.Account{
		Balances: []horizon.Balance{
			{Balance: "5.0000000", Asset: base.Asset{Type: "credit_alphanum4", Code: "USD", Issuer: keypair.MustRandom().Address()}},
			{Balance: "12.5000000", Asset: base.Asset{Type: "native"}},
		},
	}, nil)

	// Less the minimum reserve of two base reserves and the fee of the
	// sweep.
	balance, err := l.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, state.Amount(11_4999900), balance)
}

func TestLedger_Balance_reserves(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	l.BaseReserve = 1_0000000
	account := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{
		SubentryCount: 3,
		NumSponsoring: 2,
		NumSponsored:  1,
		Balances: []horizon.Balance{
			{Balance: "100.0000000", Asset: base.Asset{Type: "native"}, SellingLiabilities: "4.0000000"},
		},
	}, nil)

	// 6 entries of 1 XLM, 4 XLM selling liabilities, 100 stroops of fee.
	balance, err := l.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, state.Amount(89_9999900), balance)
}

func TestLedger_Balance_belowReserve(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	account := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(nativeAccount("1.0000000"), nil)

	balance, err := l.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, state.Amount(0), balance)
}

func TestLedger_Balance_noNative(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	account := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{}, nil)

	balance, err := l.Balance(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, state.Amount(0), balance)
}

func TestLedger_Balance_error(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	account := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{}, errors.New("not found"))

	_, err := l.Balance(context.Background(), account)
	assert.EqualError(t, err, "getting account details of "+account.Address()+": not found")
}

func TestLedger_Settle(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	contract := keypair.MustRandom()
	owner := keypair.MustRandom().FromAddress()
	l.AddSigner(contract)

	client.On("AccountDetail", horizonclient.AccountRequest{AccountID: contract.Address()}).Return(horizon.Account{
		Sequence: "100",
	}, nil)
	var submitted string
	client.On("SubmitTransactionXDR", mock.Anything).Return(horizon.Transaction{}, nil).Run(func(args mock.Arguments) {
		submitted = args[0].(string)
	})

	err := l.Settle(context.Background(), []host.Movement{
		{From: contract.FromAddress(), To: owner, Amount: 10},
	})
	require.NoError(t, err)

	genericTx, err := txnbuild.TransactionFromXDR(submitted)
	require.NoError(t, err)
	tx, ok := genericTx.Transaction()
	require.True(t, ok)
	assert.Equal(t, int64(101), tx.SequenceNumber())
	assert.Equal(t, contract.Address(), tx.SourceAccount().AccountID)
	require.Len(t, tx.Operations(), 1)
	payment := tx.Operations()[0].(*txnbuild.Payment)
	assert.Equal(t, owner.Address(), payment.Destination)
	assert.Equal(t, "0.0000010", payment.Amount)
	require.Len(t, tx.Signatures(), 1)
	client.AssertExpectations(t)
}

func TestLedger_Settle_noSigner(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	donor := keypair.MustRandom().FromAddress()
	contract := keypair.MustRandom().FromAddress()

	err := l.Settle(context.Background(), []host.Movement{
		{From: donor, To: contract, Amount: 10},
	})
	assert.ErrorIs(t, err, ErrNoSigner)
	client.AssertNotCalled(t, "SubmitTransactionXDR", mock.Anything)
}

func TestLedger_Settle_submitError(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	contract := keypair.MustRandom()
	owner := keypair.MustRandom().FromAddress()
	l.AddSigner(contract)

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{Sequence: "7"}, nil)
	client.On("SubmitTransactionXDR", mock.Anything).Return(horizon.Transaction{}, errors.New("tx_bad_seq"))

	err := l.Settle(context.Background(), []host.Movement{
		{From: contract.FromAddress(), To: owner, Amount: 10},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tx_bad_seq")
}

func TestLedger_Settle_none(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	require.NoError(t, l.Settle(context.Background(), nil))
	client.AssertNotCalled(t, "AccountDetail", mock.Anything)
}

func submittedPayments(t *testing.T, txXDR string) (*txnbuild.Transaction, []*txnbuild.Payment) {
	t.Helper()
	genericTx, err := txnbuild.TransactionFromXDR(txXDR)
	require.NoError(t, err)
	tx, ok := genericTx.Transaction()
	require.True(t, ok)
	payments := []*txnbuild.Payment{}
	for _, op := range tx.Operations() {
		payments = append(payments, op.(*txnbuild.Payment))
	}
	return tx, payments
}

func TestLedger_closeSweepLeavesReserve(t *testing.T) {
	ctx := context.Background()
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	contract := keypair.MustRandom()
	owner := keypair.MustRandom()
	l.AddSigner(contract)

	client.On("AccountDetail", horizonclient.AccountRequest{AccountID: contract.Address()}).Return(nativeAccount("10000.0000000"), nil)
	var submitted []string
	client.On("SubmitTransactionXDR", mock.Anything).Return(horizon.Transaction{}, nil).Run(func(args mock.Arguments) {
		submitted = append(submitted, args[0].(string))
	})

	i, err := host.Deploy(ctx, host.Config{
		Contract: contract.FromAddress(),
		Owner:    owner.FromAddress(),
		Store:    store.NewMemory(),
		Ledger:   l,
	})
	require.NoError(t, err)
	require.NoError(t, i.Close(ctx, owner.FromAddress()))

	require.Len(t, submitted, 1)
	tx, payments := submittedPayments(t, submitted[0])
	assert.Equal(t, contract.Address(), tx.SourceAccount().AccountID)
	assert.Equal(t, int64(txnbuild.MinBaseFee), tx.BaseFee())
	require.Len(t, payments, 1)
	assert.Equal(t, owner.Address(), payments[0].Destination)
	// The sweep leaves the contract account its minimum balance of 1 XLM
	// after the fee.
	assert.Equal(t, "9998.9999900", payments[0].Amount)
}

func TestLedger_Settle_authorized(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	donor := keypair.MustRandom()
	contract := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", horizonclient.AccountRequest{AccountID: donor.Address()}).Return(horizon.Account{Sequence: "41"}, nil).Once()
	authorization, err := DonationPayment(client, network.TestNetworkPassphrase, donor, contract, 25)
	require.NoError(t, err)

	var submitted string
	client.On("SubmitTransactionXDR", mock.Anything).Return(horizon.Transaction{}, nil).Run(func(args mock.Arguments) {
		submitted = args[0].(string)
	})

	// The ledger has no signer for the donor, the donor's own signature
	// authorizes the payment.
	err = l.Settle(context.Background(), []host.Movement{
		{From: donor.FromAddress(), To: contract, Amount: 25, Authorization: authorization},
	})
	require.NoError(t, err)
	assert.Equal(t, authorization, submitted)

	tx, payments := submittedPayments(t, submitted)
	assert.Equal(t, int64(42), tx.SequenceNumber())
	assert.Equal(t, donor.Address(), tx.SourceAccount().AccountID)
	require.Len(t, payments, 1)
	assert.Equal(t, contract.Address(), payments[0].Destination)
	assert.Equal(t, "0.0000025", payments[0].Amount)
	require.Len(t, tx.Signatures(), 1)
}

func TestLedger_Settle_authorizationMismatch(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	donor := keypair.MustRandom()
	contract := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{Sequence: "41"}, nil)
	authorization, err := DonationPayment(client, network.TestNetworkPassphrase, donor, contract, 25)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		movement host.Movement
	}{
		{"amount", host.Movement{From: donor.FromAddress(), To: contract, Amount: 26, Authorization: authorization}},
		{"from", host.Movement{From: keypair.MustRandom().FromAddress(), To: contract, Amount: 25, Authorization: authorization}},
		{"to", host.Movement{From: donor.FromAddress(), To: keypair.MustRandom().FromAddress(), Amount: 25, Authorization: authorization}},
		{"not a tx", host.Movement{From: donor.FromAddress(), To: contract, Amount: 25, Authorization: "AAAA"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := l.Settle(context.Background(), []host.Movement{tc.movement})
			assert.ErrorIs(t, err, ErrAuthorizationMismatch)
		})
	}
	client.AssertNotCalled(t, "SubmitTransactionXDR", mock.Anything)
}

func TestLedger_Settle_authorizedNotAlone(t *testing.T) {
	client := &horizonclient.MockClient{}
	l := newLedger(client)
	donor := keypair.MustRandom()
	contract := keypair.MustRandom()
	l.AddSigner(contract)

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{Sequence: "41"}, nil)
	authorization, err := DonationPayment(client, network.TestNetworkPassphrase, donor, contract.FromAddress(), 25)
	require.NoError(t, err)

	err = l.Settle(context.Background(), []host.Movement{
		{From: contract.FromAddress(), To: donor.FromAddress(), Amount: 5},
		{From: donor.FromAddress(), To: contract.FromAddress(), Amount: 25, Authorization: authorization},
	})
	assert.EqualError(t, err, "settling 0.0000025 from "+donor.Address()+" to "+contract.Address()+": authorized movement must be settled alone")
	client.AssertNotCalled(t, "SubmitTransactionXDR", mock.Anything)
}

func TestDonationPayment_error(t *testing.T) {
	client := &horizonclient.MockClient{}
	donor := keypair.MustRandom()
	contract := keypair.MustRandom().FromAddress()

	client.On("AccountDetail", mock.Anything).Return(horizon.Account{}, errors.New("not found"))

	_, err := DonationPayment(client, network.TestNetworkPassphrase, donor, contract, 25)
	assert.EqualError(t, err, "getting account "+donor.Address()+": not found")

	client = &horizonclient.MockClient{}
	client.On("AccountDetail", mock.Anything).Return(horizon.Account{Sequence: "41"}, nil)
	_, err = DonationPayment(client, network.TestNetworkPassphrase, donor, contract, 0)
	assert.EqualError(t, err, "building donation payment: invalid donation amount 0: must be positive")
}
