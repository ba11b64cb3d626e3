package redis

import (
	"errors"
	"fmt"
	"time"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	redigo "github.com/gomodule/redigo/redis"
)

// DatabaseProvider contains the redis connection pool
type DatabaseProvider struct {
	pool     *redigo.Pool
	dbPrefix string
}

// New returns an instance
func New(dbConfig models.DbConnection) (DatabaseProvider, error) {
	return DatabaseProvider{}.init(dbConfig)
}

// GetType returns 1, for being a Redis interface
func (p DatabaseProvider) GetType() int {
	return 1 // dbabstraction.TypeRedis
}

func getDialOptions(dbConfig models.DbConnection) []redigo.DialOption {
	options := []redigo.DialOption{redigo.DialConnectTimeout(10 * time.Second)}
	if dbConfig.Username != "" {
		options = append(options, redigo.DialUsername(dbConfig.Username))
	}
	if dbConfig.Password != "" {
		options = append(options, redigo.DialPassword(dbConfig.Password))
	}
	if dbConfig.RedisUseSsl {
		options = append(options, redigo.DialUseTLS(true))
	}
	return options
}

func (p DatabaseProvider) init(dbConfig models.DbConnection) (DatabaseProvider, error) {
	if dbConfig.HostUrl == "" {
		return DatabaseProvider{}, errors.New("empty database url was provided")
	}
	options := getDialOptions(dbConfig)
	p.dbPrefix = dbConfig.RedisPrefix
	p.pool = &redigo.Pool{
		MaxIdle:     10,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redigo.Conn, error) {
			return redigo.Dial("tcp", dbConfig.HostUrl, options...)
		},
	}
	conn := p.pool.Get()
	defer conn.Close()
	_, err := conn.Do("PING")
	if err != nil {
		_ = p.pool.Close()
		return DatabaseProvider{}, err
	}
	return p, nil
}

// Close the database connection
func (p DatabaseProvider) Close() {
	if p.pool == nil {
		return
	}
	err := p.pool.Close()
	if err != nil {
		fmt.Println(err)
	}
}

func (p DatabaseProvider) do(command string, args ...any) (any, error) {
	conn := p.pool.Get()
	defer conn.Close()
	return conn.Do(command, args...)
}

func (p DatabaseProvider) getAllKeysWithPrefix(prefix string) []string {
	var result []string
	cursor := 0
	for {
		values, err := redigo.Values(p.do("SCAN", cursor, "MATCH", p.dbPrefix+prefix+"*", "COUNT", 100))
		helper.Check(err)
		cursor, _ = redigo.Int(values[0], nil)
		keys, _ := redigo.Strings(values[1], nil)
		result = append(result, keys...)
		if cursor == 0 {
			break
		}
	}
	return result
}

func (p DatabaseProvider) getHashMap(id string) ([]any, bool) {
	result, err := redigo.Values(p.do("HGETALL", p.dbPrefix+id))
	helper.Check(err)
	if len(result) == 0 {
		return nil, false
	}
	return result, true
}

func (p DatabaseProvider) buildArgs(id string) redigo.Args {
	return redigo.Args{}.Add(p.dbPrefix + id)
}

func (p DatabaseProvider) setHashMap(content redigo.Args) {
	_, err := p.do("HSET", content...)
	helper.Check(err)
}

func (p DatabaseProvider) deleteKey(id string) {
	_, err := p.do("DEL", p.dbPrefix+id)
	helper.Check(err)
}
