package client

//go:generate go run go.uber.org/mock/mockgen -package client -destination transport_mock_test.go softlayer-rpc/transport Transport
