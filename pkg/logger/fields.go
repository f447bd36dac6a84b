package logger

import (
	"time"

	"go.uber.org/zap"
)

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

func CampaignID(v string) zap.Field { return zap.String("campaign_id", v) }

func CampaignStatus(v string) zap.Field { return zap.String("campaign_status", v) }

func Email(v string) zap.Field { return zap.String("email", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Count(key string, v int) zap.Field { return zap.Int(key, v) }

func Batch(index, total int) zap.Field {
	return zap.Dict("batch", zap.Int("index", index), zap.Int("of", total))
}

// Err is zap.Error under the name the rest of the code base expects.
func Err(err error) zap.Field { return zap.Error(err) }
