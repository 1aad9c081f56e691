/*
Package rabbitmq publishes integration events to a RabbitMQ topic exchange. The
event topic is the routing key. NewWithAMQPConn dials with automatic reconnect and
declares the exchange on every (re)connect.
*/
package rabbitmq
