// Package config loads environment configuration into tagged structs.
//
// A .env file in the working directory is read once on first use. Each
// struct type is parsed once and cached, so later loads of the same type
// return the first result:
//
//	var cfg session.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
package config
