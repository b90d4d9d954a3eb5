package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbsim/internal/model"
)

func TestWriteCSV(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	trades := []model.TradeRecord{
		{
			ID: "a1", Pair: "BTC/USDT", Status: model.StatusTakeProfit, Profit: 12.345678,
			EntryExchange: "Coinbase", ExitExchange: "Bybit", EntryPrice: 64980, ExitPrice: 65119.5,
			Timestamp: ts, Reasoning: `spread "held", closed`,
		},
		{
			ID: "b2", Pair: "ETH/USDT", Status: model.StatusStopLoss, Profit: -3.5,
			EntryExchange: "Kraken", ExitExchange: "Bybit", EntryPrice: 3490, ExitPrice: 3488.7,
			Timestamp: ts, IsBacktest: true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, trades))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{
		"a1", "LIVE", "2024-05-01T12:30:00Z", "BTC/USDT", "TAKE_PROFIT", "12.3457",
		"Coinbase", "Bybit", "64980.0000", "65119.5000", `spread "held", closed`,
	}, rows[1])
	assert.Equal(t, "SIM", rows[2][1])
	assert.Equal(t, "-3.5000", rows[2][5])
	assert.Equal(t, PendingAnalysis, rows[2][10])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
