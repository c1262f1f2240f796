// Package application contém os casos de uso do engajamento por post:
// resolução de métricas em camadas (Fetcher), views/likes/pesquisa com
// deduplicação e atualização otimista (Controller), flags locais (FlagStore)
// e o limite de requisições em voo (ConcurrencyService).
//
// Ele depende apenas do pacote domain e não conhece net/http nem redis.
package application
