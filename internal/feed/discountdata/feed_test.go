package discountdata

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Symbol,ExpirationDate,AskPrice,AskSize,BidPrice,BidSize,LastPrice,PutCall,StrikePrice,Volume,ImpliedVolatility,Delta,Gamma,Vega,Rho,OpenInterest,UnderlyingPrice,DataDate\n"

func TestFeedParsesQuotes(t *testing.T) {
	csv := header +
		"AAPL,2013-01-04,10.55,,10.35,,10.55,call,540,14292,0.295,0.7809,2.4778,11.9371,,8666,549.03,2013-01-02\n" +
		"AAPL,2013-01-04,1.20,,1.00,,1.10,put,540,10,0.295,-0.2,2.4,11.9,,200,549.03,2013-01-02\n"

	f, err := NewFromReader(strings.NewReader(csv))
	require.NoError(t, err)

	q, err := f.Next()
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Symbol())
	assert.Equal(t, "AAPL130104C00540000", q.Name())
	assert.True(t, q.IsCall())
	assert.Equal(t, int64(1035), q.Bid().Cents())
	assert.Equal(t, int64(1055), q.Ask().Cents())
	assert.Equal(t, int64(54000), q.StrikePrice().Cents())
	assert.Equal(t, int64(54903), q.UnderlyingPrice().Cents())
	assert.Equal(t, time.Date(2013, time.January, 2, 0, 0, 0, 0, time.UTC), q.Date())
	assert.Equal(t, time.Date(2013, time.January, 4, 0, 0, 0, 0, time.UTC), q.ExpirationDate())

	q, err = f.Next()
	require.NoError(t, err)
	assert.True(t, q.IsPut())

	_, err = f.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFeedRejectsCrossedMarket(t *testing.T) {
	csv := header +
		"AAPL,2013-01-04,10.35,,10.55,,10.55,call,540,14292,0.295,0.7809,2.4778,11.9371,,8666,549.03,2013-01-02\n"

	f, err := NewFromReader(strings.NewReader(csv))
	require.NoError(t, err)

	_, err = f.Next()
	assert.Error(t, err)
}

func TestFeedRejectsBadPutCall(t *testing.T) {
	csv := header +
		"AAPL,2013-01-04,10.55,,10.35,,10.55,warrant,540,14292,0.295,0.7809,2.4778,11.9371,,8666,549.03,2013-01-02\n"

	f, err := NewFromReader(strings.NewReader(csv))
	require.NoError(t, err)

	_, err = f.Next()
	assert.Error(t, err)
}

func TestFeedRejectsBadPrice(t *testing.T) {
	csv := header +
		"AAPL,2013-01-04,abc,,10.35,,10.55,call,540,14292,0.295,0.7809,2.4778,11.9371,,8666,549.03,2013-01-02\n"

	f, err := NewFromReader(strings.NewReader(csv))
	require.NoError(t, err)

	_, err = f.Next()
	assert.Error(t, err)
}
