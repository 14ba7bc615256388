package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/schubergphilis/azureenergylabelerlib/internal/common"
	"github.com/schubergphilis/azureenergylabelerlib/internal/config"
)

const valkeyConnWriteTimeout = 5 * time.Second

func CreateValkeyClient(ctx context.Context, conf config.Valkey) (valkey.Client, common.CloseFunc, error) {
	ret, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{conf.URL},
		Password:         conf.Creds.Password,
		ConnWriteTimeout: valkeyConnWriteTimeout,
		// the query cache only uses plain GET/SET
		DisableCache: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ping := ret.B().Ping().Build()

	err = ret.Do(ctx, ping).Error()
	if err != nil {
		ret.Close()

		return nil, nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	shutdown := func(context.Context) error {
		ret.Close()

		return nil
	}

	return ret, shutdown, nil
}
