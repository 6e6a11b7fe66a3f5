package backtest

import (
	"context"
	"testing"

	"kairos/internal/market"

	"github.com/stretchr/testify/assert"
)

func TestBarStore_InsertAndLoad(t *testing.T) {
	bs, err := NewBarStore(t.TempDir())
	assert.NoError(t, err)
	defer bs.Close()

	ctx := context.Background()
	bars := []market.Bar{
		{TS: 3000, Open: 11, High: 12, Low: 10, Close: 11.5, Volume: 300},
		{TS: 1000, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{TS: 2000, Open: 10.5, High: 11.5, Low: 10, Close: 11, Volume: 200},
	}
	n, err := bs.InsertBars(ctx, "005930", bars)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	// 重复时间戳覆盖旧值
	_, err = bs.InsertBars(ctx, "005930", []market.Bar{{TS: 2000, Close: 99}})
	assert.NoError(t, err)

	series, err := bs.LoadSeries(ctx, "005930", 1000, 2500)
	assert.NoError(t, err)
	assert.Equal(t, 2, series.Len())

	c, ok := series.CloseAt(2000)
	assert.True(t, ok)
	assert.Equal(t, 99.0, c)

	_, ok = series.CloseAt(3000)
	assert.False(t, ok, "区间外的时间戳不应出现")
}

func TestBarStore_Validation(t *testing.T) {
	_, err := NewBarStore("")
	assert.Error(t, err)

	bs, err := NewBarStore(t.TempDir())
	assert.NoError(t, err)
	defer bs.Close()

	_, err = bs.LoadSeries(context.Background(), "", 0, 10)
	assert.Error(t, err)
}
